package main

import (
	"flag"
	"log"

	"github.com/PatchLens/sol-upgrade-lens/transpile"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	reportJsonFile := flag.String("json", "transpile-report.json", "File with transpile details")
	reportChartsFile := flag.String("charts", "transpile-report.png", "File to output the edits chart image")
	flag.Parse()

	metrics, err := transpile.ReadReportMetrics(*reportJsonFile)
	if err != nil {
		log.Fatalf("%sFailed to read report: %v", transpile.ErrorLogPrefix, err)
	}
	if err := transpile.WriteReportCharts(*reportChartsFile, metrics); err != nil {
		log.Fatalf("%s%v", transpile.ErrorLogPrefix, err)
	}
	log.Println("Report file wrote: " + *reportChartsFile)
}

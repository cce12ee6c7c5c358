package main

import (
	"testing"

	"github.com/use-agent/pricewatch/models"
)

func TestSummarize(t *testing.T) {
	ok := func(ms int64, engine, priceStrategy string) runResult {
		return fromResponse(runResult{}, &models.PreviewResponse{
			Success:    true,
			EngineUsed: engine,
			Timing:     models.TimingInfo{TotalMs: ms},
			Diagnostics: &models.Diagnostics{Fields: []models.FieldTrace{
				{Field: "title", Found: true, Strategy: "structural", Selector: "span.B_NuCI"},
				{Field: "price", Found: priceStrategy != "", Strategy: priceStrategy, Selector: priceStrategy},
				{Field: "image", Found: false},
			}},
		})
	}
	failed := fromResponse(runResult{}, &models.PreviewResponse{
		Error: &models.ErrorDetail{Code: models.ErrCodeExtractionFailed, Message: "no title"},
	})

	rep := summarize([]runResult{
		ok(100, "http", "div._30jeq3"),
		ok(300, "rod", "div._30jeq3"),
		ok(200, "http", ""),
		failed,
	})

	if rep.AvgMs != 200 {
		t.Errorf("AvgMs = %v, want 200", rep.AvgMs)
	}
	if rep.Engines["http"] != 2 || rep.Engines["rod"] != 1 {
		t.Errorf("Engines = %v", rep.Engines)
	}
	if got := rep.Fields["title"].Found; got != 3 {
		t.Errorf("title found = %d, want 3", got)
	}
	if got := rep.Fields["price"].Found; got != 2 {
		t.Errorf("price found = %d, want 2", got)
	}
	if got := topKey(rep.Fields["title"].Strategies); got != "structural span.B_NuCI" {
		t.Errorf("title top strategy = %q", got)
	}
	if got := topKey(rep.Fields["price"].Strategies); got != "div._30jeq3" {
		t.Errorf("price top strategy = %q", got)
	}
	if topKey(rep.Fields["image"].Strategies) != "-" {
		t.Error("image should have no strategy")
	}
	if failed.Error != "[EXTRACTION_FAILED] no title" {
		t.Errorf("failed.Error = %q", failed.Error)
	}
}

package logger_test

import (
	"log/slog"

	"github.com/soundprediction/naturegraph/pkg/logger"
)

func ExampleNewDefaultLogger() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Debug("segmenting document", "source_doc", "report.pdf")
	log.Info("ingested unit", "nodes", 3, "relationships", 3)
	log.Warn("dropped candidate", "reason", "missing_name", "type", "Risk")
	log.Error("failed to store embedding", "id", "ev_report_p1_c0", "error", "timeout")
}

package batch

import (
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
)

// buildPipeline creates the classification pipeline for a batch run. The
// model session is shared by all workers, so unsafe runtimes are serialized.
func buildPipeline(config *Config) (*pipeline.Pipeline, error) {
	cfg := config.Pipeline
	if config.Workers > 1 {
		cfg.Model.Serialize = cfg.Model.Serialize || cfg.Model.GPU.UseGPU
	}
	return pipeline.NewBuilderFromConfig(cfg).Build()
}

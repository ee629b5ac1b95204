package app

import (
	"detectionsite/internal/config"
	"detectionsite/internal/service/ai"
	"detectionsite/internal/service/ai/detr"
	"detectionsite/internal/service/ai/ssd"
)

// RegisterModels registers both detection variants. Nothing is loaded
// until a variant is first used.
func RegisterModels(registry *ai.Registry, cfg *config.Config) {
	registry.Register(ai.Variant{
		Name:      ai.ModelSSD,
		Threshold: cfg.SSDThreshold,
		Style:     ai.SSDStyle,
		Load: func() (ai.Detector, error) {
			return ssd.New(cfg.SSDModelPath, cfg.SSDConfigPath, cfg.SSDThreshold)
		},
	})

	registry.Register(ai.Variant{
		Name:      ai.ModelDETR,
		Threshold: cfg.DETRThreshold,
		Style:     ai.DETRStyle,
		Load: func() (ai.Detector, error) {
			if err := detr.InitRuntime(cfg.ONNXRuntimeLib); err != nil {
				return nil, err
			}

			labels := detr.COCOLabels
			if cfg.DETRLabelsPath != "" {
				loaded, err := detr.LoadLabels(cfg.DETRLabelsPath)
				if err != nil {
					return nil, err
				}
				labels = loaded
			}

			return detr.New(cfg.DETRModelPath, labels, cfg.DETRThreshold)
		},
	})
}

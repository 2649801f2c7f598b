package ocr

import "context"

// Cloud engine names accepted by CloudFactory.
const (
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// CloudSettings carries the settings for every cloud engine.
type CloudSettings struct {
	Vision     VisionOptions
	DocumentAI DocumentAIConfig
}

// CloudFactory returns a factory for the named cloud engine. An empty name
// returns a nil factory, meaning no secondary engine.
func CloudFactory(name string, settings CloudSettings) (EngineFactory, error) {
	switch name {
	case "":
		return nil, nil
	case EngineVision:
		return func(ctx context.Context) (Engine, error) {
			engine, err := NewVisionEngine(ctx, settings.Vision)
			if err != nil {
				return nil, err
			}
			return engine, nil
		}, nil
	case EngineDocumentAI:
		return func(ctx context.Context) (Engine, error) {
			engine, err := NewDocumentAIEngine(ctx, settings.DocumentAI)
			if err != nil {
				return nil, err
			}
			return engine, nil
		}, nil
	default:
		return nil, NewOCRError("CloudFactory", ErrUnknownEngine, name)
	}
}

package tts

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/parley/internal/ttypes"
)

// DefaultMaxTextSize is the longest line an engine is asked to speak.
const DefaultMaxTextSize = 5000

// PiperPaths locates the Piper binary and voice model.
type PiperPaths struct {
	// Binary is the piper executable, looked up in PATH when relative
	Binary string

	// ModelPath is the .onnx voice model
	ModelPath string

	// ConfigPath is the model config; defaults to ModelPath + ".json"
	ConfigPath string
}

// ResolvedConfigPath returns ConfigPath or the path Piper looks for next
// to the model.
func (p PiperPaths) ResolvedConfigPath() string {
	if p.ConfigPath != "" {
		return p.ConfigPath
	}
	if p.ModelPath == "" {
		return ""
	}
	return p.ModelPath + ".json"
}

// ValidationResult contains the result of engine validation
type ValidationResult struct {
	// Engine is the validated engine type
	Engine ttypes.EngineType

	// Available indicates if the engine is available and configured
	Available bool

	// Error contains any validation error
	Error error

	// Guidance provides setup instructions if validation failed
	Guidance string

	// Details contains additional validation information
	Details map[string]string
}

// ValidateEngineSelection picks the engine from the CLI argument, falling
// back to the configured one. Selection must be explicit.
func ValidateEngineSelection(cliArg string, configured ttypes.EngineType) (ttypes.EngineType, error) {
	engineType := strings.ToLower(strings.TrimSpace(cliArg))
	if engineType == "" {
		engineType = string(configured)
	}

	switch engineType {
	case "":
		return ttypes.EngineNone, fmt.Errorf("%w\n\nPlease specify an engine:\n  parley play --engine mock script.yml\n  parley play --engine piper script.yml\n\nOr set a default in the config file:\n  tts:\n    engine: mock  # or \"piper\"", ErrNoEngineConfigured)
	case "mock", "test":
		return ttypes.EngineMock, nil
	case "piper":
		return ttypes.EnginePiper, nil
	default:
		return ttypes.EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - mock (generated tones)\n  - piper (offline TTS)", ErrInvalidEngine, engineType)
	}
}

// ValidateText checks a line before synthesis.
func ValidateText(text string, maxSize int) error {
	if strings.TrimSpace(text) == "" {
		return NewTTSError(ErrorCodeInvalidInput, "nothing to synthesize", ErrEmptyText)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxTextSize
	}
	if n := utf8.RuneCountInString(text); n > maxSize {
		return NewTTSError(ErrorCodeTextTooLong, fmt.Sprintf("%d characters (max %d)", n, maxSize), ErrTextTooLong).
			WithContext("length", n)
	}
	return nil
}

// ValidateEngine checks that the engine can be used. It does not run a
// test synthesis.
func ValidateEngine(engineType ttypes.EngineType, piper PiperPaths) *ValidationResult {
	result := &ValidationResult{
		Engine:  engineType,
		Details: make(map[string]string),
	}

	switch engineType {
	case ttypes.EngineMock:
		result.Details["engine"] = "Mock (generated tones)"
		result.Available = true
	case ttypes.EnginePiper:
		result = validatePiperEngine(piper, result)
	case ttypes.EngineNone:
		result.Error = ErrNoEngineConfigured
		result.Guidance = "Please specify a synthesis engine with --engine or in the config file"
	default:
		result.Error = fmt.Errorf("%w: %s", ErrInvalidEngine, engineType)
		result.Guidance = "Supported engines: mock, piper"
	}

	return result
}

// validatePiperEngine validates the Piper configuration and availability
func validatePiperEngine(paths PiperPaths, result *ValidationResult) *ValidationResult {
	result.Details["engine"] = "Piper (Offline TTS)"

	binary := paths.Binary
	if binary == "" {
		binary = "piper"
	}
	piperPath, err := exec.LookPath(binary)
	if err != nil {
		result.Error = fmt.Errorf("%w: piper not found: %v", ErrEngineNotAvailable, err)
		result.Guidance = buildPiperInstallGuidance()
		return result
	}
	result.Details["binary_path"] = piperPath

	if paths.ModelPath == "" {
		result.Error = fmt.Errorf("%w: piper model path not configured", ErrEngineNotAvailable)
		result.Guidance = buildPiperModelGuidance()
		return result
	}
	if _, err := os.Stat(paths.ModelPath); err != nil {
		result.Error = fmt.Errorf("%w: model file not accessible: %v", ErrEngineNotAvailable, err)
		result.Guidance = buildPiperModelGuidance()
		return result
	}
	result.Details["model_path"] = paths.ModelPath

	configPath := paths.ResolvedConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		result.Details["config_path"] = configPath
	} else {
		// Piper also accepts <model>.json next to a renamed model
		alt := strings.TrimSuffix(paths.ModelPath, filepath.Ext(paths.ModelPath)) + ".json"
		if _, err := os.Stat(alt); err == nil {
			result.Details["config_path"] = alt + " (auto-detected)"
		} else {
			result.Details["config_note"] = "Config file not found (using model defaults)"
		}
	}

	result.Available = true
	result.Details["status"] = "Ready"
	return result
}

// buildPiperInstallGuidance provides instructions for installing Piper
func buildPiperInstallGuidance() string {
	return `Piper TTS is not installed. To install:

1. Download Piper binary from: https://github.com/rhasspy/piper/releases
2. Extract and add to PATH, or set tts.piper.binary in the config file
3. Download a voice model from: https://github.com/rhasspy/piper/blob/master/VOICES.md
4. Configure the model path in the config file (parley config)`
}

// buildPiperModelGuidance provides instructions for configuring Piper models
func buildPiperModelGuidance() string {
	return `Piper model path not configured. To configure:

1. Download a voice model from: https://github.com/rhasspy/piper/blob/master/VOICES.md
   (both the .onnx file and its .onnx.json config)

2. Configure the model path in the config file:
   tts:
     engine: piper
     piper:
       model_path: ~/.local/share/piper/models/en_US-amy-medium.onnx`
}

// QuickValidation performs a fast availability check.
func QuickValidation(engineType ttypes.EngineType, binary string) error {
	switch engineType {
	case ttypes.EngineMock:
		return nil
	case ttypes.EnginePiper:
		if binary == "" {
			binary = "piper"
		}
		if _, err := exec.LookPath(binary); err != nil {
			return fmt.Errorf("%w: piper not found: %v", ErrEngineNotAvailable, err)
		}
		return nil
	default:
		return ErrInvalidEngine
	}
}

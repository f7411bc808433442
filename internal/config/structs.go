//nolint:lll
package config

// Config represents the complete configuration for the wastelens classifier.
// It includes settings for all commands (classify, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelPath string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`
	Saliency   SaliencyConfig   `mapstructure:"saliency" yaml:"saliency" json:"saliency"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// PreprocessConfig controls how images are resized for the classifier.
type PreprocessConfig struct {
	Width  int    `mapstructure:"width" yaml:"width" json:"width"`
	Height int    `mapstructure:"height" yaml:"height" json:"height"`
	Filter string `mapstructure:"filter" yaml:"filter" json:"filter"`
}

// ClassifierConfig contains model execution and decision settings.
type ClassifierConfig struct {
	DeadbandLow      float64 `mapstructure:"deadband_low" yaml:"deadband_low" json:"deadband_low"`
	DeadbandHigh     float64 `mapstructure:"deadband_high" yaml:"deadband_high" json:"deadband_high"`
	Serialize        bool    `mapstructure:"serialize" yaml:"serialize" json:"serialize"`
	NumThreads       int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	WarmupIterations int     `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// SaliencyConfig contains Grad-CAM settings.
type SaliencyConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TargetLayer   string  `mapstructure:"target_layer" yaml:"target_layer" json:"target_layer"`
	OverlayAlpha  float64 `mapstructure:"overlay_alpha" yaml:"overlay_alpha" json:"overlay_alpha"`
	Interpolation string  `mapstructure:"interpolation" yaml:"interpolation" json:"interpolation"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	MaxPixels       int    `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	Language        string `mapstructure:"language" yaml:"language" json:"language"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

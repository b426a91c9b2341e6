package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/Zelak312/mflowinter/flowinter"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BindAddress                 string              `yaml:"bindAddress"`
	Port                        int32               `yaml:"port"`
	ProcessFolder               string              `yaml:"processFolder"`
	DatabasePath                string              `yaml:"databasePath"`
	LogPath                     string              `yaml:"logPath"`
	Workers                     int                 `yaml:"workers"`
	TargetFPS                   float64             `yaml:"targetFPS"`
	FFmpegOptions               FFmpegOptions       `yaml:"ffmpegOptions"`
	DeleteOutputIfAlreadyExist  *bool               `yaml:"deleteOutputIfAlreadyExist"`
	CopyFileToDestinationOnSkip *bool               `yaml:"copyFileToDestinationOnSkip"`
	Interpolation               InterpolationConfig `yaml:"interpolation"`
}

type FFmpegOptions struct {
	HWAccelDecodeFlag string `yaml:"HWAccelDecodeFlag"`
	HWAccelEncodeFlag string `yaml:"HWAccelEncodeFlag"`
}

type InterpolationConfig struct {
	Mode          string  `yaml:"mode"`
	MaskNorm      float64 `yaml:"maskNorm"`
	Gamma         float64 `yaml:"gamma"`
	Blend         *bool   `yaml:"blend"`
	KernelWorkers int     `yaml:"kernelWorkers"`
	Concurrency   int     `yaml:"concurrency"`
	HPad          *int    `yaml:"hPad"`
	VPad          *int    `yaml:"vPad"`
	Level         string  `yaml:"level"`
	PixelFormat   string  `yaml:"pixelFormat"`
}

// Options turns the verified section into engine options for geometry g.
// HPad/VPad of g are taken from the config.
func (c *InterpolationConfig) Options(g flowinter.Geometry) (flowinter.Options, error) {
	mode, err := flowinter.ParseMode(c.Mode)
	if err != nil {
		return flowinter.Options{}, err
	}

	level, err := flowinter.ParseLevel(c.Level)
	if err != nil {
		return flowinter.Options{}, err
	}

	g.HPad, g.VPad = *c.HPad, *c.VPad
	return flowinter.Options{
		Geometry:    g,
		Mode:        mode,
		MaskNorm:    c.MaskNorm,
		Gamma:       c.Gamma,
		Blend:       *c.Blend,
		Workers:     c.KernelWorkers,
		Concurrency: c.Concurrency,
		Level:       level,
	}, nil
}

func verifyInterpolationConfig(c *InterpolationConfig) error {
	if c.Mode == "" {
		c.Mode = flowinter.ModeInter.String()
	}

	if _, err := flowinter.ParseMode(c.Mode); err != nil {
		return err
	}

	if c.MaskNorm == 0 {
		c.MaskNorm = 100
	}

	if c.MaskNorm < 0 {
		return fmt.Errorf("maskNorm must be positive, got %g", c.MaskNorm)
	}

	if c.Gamma == 0 {
		c.Gamma = 1
	}

	if c.Gamma < 0 {
		return fmt.Errorf("gamma must be positive, got %g", c.Gamma)
	}

	if c.Blend == nil {
		defaultVal := true
		c.Blend = &defaultVal
	}

	if c.KernelWorkers == 0 {
		c.KernelWorkers = runtime.NumCPU()
	}

	if c.Concurrency == 0 {
		c.Concurrency = 1
	}

	if c.HPad == nil {
		defaultVal := 32
		c.HPad = &defaultVal
	}

	if c.VPad == nil {
		defaultVal := 32
		c.VPad = &defaultVal
	}

	if *c.HPad < 0 || *c.VPad < 0 {
		return fmt.Errorf("padding must not be negative, got %dx%d", *c.HPad, *c.VPad)
	}

	if c.Level == "" {
		c.Level = flowinter.LevelAuto.String()
	}

	if _, err := flowinter.ParseLevel(c.Level); err != nil {
		return err
	}

	if c.PixelFormat == "" {
		c.PixelFormat = "yuv420p"
	}

	if _, err := ParsePixelFormat(c.PixelFormat); err != nil {
		return err
	}

	return nil
}

// Verify config and set defaults
func verifyConfig(config *Config) error {
	if config == nil {
		return errors.New("cannot verify config, config is nil")
	}

	if config.BindAddress == "" {
		config.BindAddress = "127.0.0.1"
	}

	if config.Port == 0 {
		config.Port = 80
	}

	if config.ProcessFolder == "" {
		return errors.New("missing temp process folder in config")
	}

	if config.DatabasePath == "" {
		return errors.New("missing database path in config")
	}

	if config.Workers == 0 {
		config.Workers = 1
	}

	if config.TargetFPS == 0 {
		config.TargetFPS = 60
	}

	if config.DeleteOutputIfAlreadyExist == nil {
		defaultVal := false
		config.DeleteOutputIfAlreadyExist = &defaultVal
	}

	if config.CopyFileToDestinationOnSkip == nil {
		defaultVal := false
		config.CopyFileToDestinationOnSkip = &defaultVal
	}

	if config.LogPath == "" {
		config.LogPath = "./logs"
	}

	if err := verifyInterpolationConfig(&config.Interpolation); err != nil {
		return fmt.Errorf("interpolation: %w", err)
	}

	return nil
}

func GetConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	config := Config{}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, err
	}

	// Override with env variables if they are passed in
	err = envconfig.ProcessWithOptions("", &config, envconfig.Options{SplitWords: true})
	if err != nil {
		return Config{}, err
	}

	err = verifyConfig(&config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Ramp     RampConfig     `yaml:"ramp" mapstructure:"ramp"`
	Relief   ReliefConfig   `yaml:"relief" mapstructure:"relief"`
	Camera   CameraConfig   `yaml:"camera" mapstructure:"camera"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Annotate AnnotateConfig `yaml:"annotate" mapstructure:"annotate"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the two source datasets and the working CRS.
type InputConfig struct {
	PopulationPath  string `yaml:"population_path" mapstructure:"population_path"`
	PopulationLayer string `yaml:"population_layer" mapstructure:"population_layer"`
	PopulationCRS   string `yaml:"population_crs" mapstructure:"population_crs"`
	BoundaryPath    string `yaml:"boundary_path" mapstructure:"boundary_path"`
	BoundaryLayer   string `yaml:"boundary_layer" mapstructure:"boundary_layer"`
	BoundaryCRS     string `yaml:"boundary_crs" mapstructure:"boundary_crs"`
	TargetCRS       string `yaml:"target_crs" mapstructure:"target_crs"`
}

// BoundaryConfig selects the administrative units that make up the country.
type BoundaryConfig struct {
	NameField string   `yaml:"name_field" mapstructure:"name_field"`
	Names     []string `yaml:"names" mapstructure:"names"`
}

// RasterConfig configures population rasterization.
type RasterConfig struct {
	Size  int    `yaml:"size" mapstructure:"size"`
	Field string `yaml:"field" mapstructure:"field"`
	Clip  bool   `yaml:"clip" mapstructure:"clip"`
}

// RampConfig configures the color gradient used as relief texture.
type RampConfig struct {
	Palette []string `yaml:"palette" mapstructure:"palette"`
	Bias    float64  `yaml:"bias" mapstructure:"bias"`
	Colors  int      `yaml:"colors" mapstructure:"colors"`
}

// ReliefConfig configures shading and 3D surface construction.
type ReliefConfig struct {
	ZScale        float64 `yaml:"zscale" mapstructure:"zscale"`
	Solid         bool    `yaml:"solid" mapstructure:"solid"`
	ShadowDepth   float64 `yaml:"shadow_depth" mapstructure:"shadow_depth"`
	SunAzimuth    float64 `yaml:"sun_azimuth" mapstructure:"sun_azimuth"`
	SunAltitude   float64 `yaml:"sun_altitude" mapstructure:"sun_altitude"`
	ShadeStrength float64 `yaml:"shade_strength" mapstructure:"shade_strength"`
}

// CameraConfig positions the virtual camera.
type CameraConfig struct {
	Theta float64 `yaml:"theta" mapstructure:"theta"`
	Phi   float64 `yaml:"phi" mapstructure:"phi"`
	Zoom  float64 `yaml:"zoom" mapstructure:"zoom"`
	FOV   float64 `yaml:"fov" mapstructure:"fov"`
}

// RenderConfig configures the path-traced still.
type RenderConfig struct {
	Path             string    `yaml:"path" mapstructure:"path"`
	LightDirections  []float64 `yaml:"light_directions" mapstructure:"light_directions"`
	LightAltitudes   []float64 `yaml:"light_altitudes" mapstructure:"light_altitudes"`
	LightColors      []string  `yaml:"light_colors" mapstructure:"light_colors"`
	LightIntensities []float64 `yaml:"light_intensities" mapstructure:"light_intensities"`
	Width            int       `yaml:"width" mapstructure:"width"`
	Height           int       `yaml:"height" mapstructure:"height"`
	Samples          int       `yaml:"samples" mapstructure:"samples"`
	Bounces          int       `yaml:"bounces" mapstructure:"bounces"`
}

// AnnotateConfig configures the text overlay pass.
type AnnotateConfig struct {
	Path   string        `yaml:"path" mapstructure:"path"`
	Color  string        `yaml:"color" mapstructure:"color"`
	Labels []LabelConfig `yaml:"labels" mapstructure:"labels"`
}

// LabelConfig is a single text layer.
type LabelConfig struct {
	Text    string  `yaml:"text" mapstructure:"text"`
	Gravity string  `yaml:"gravity" mapstructure:"gravity"`
	OffsetX float64 `yaml:"offset_x" mapstructure:"offset_x"`
	OffsetY float64 `yaml:"offset_y" mapstructure:"offset_y"`
	Font    string  `yaml:"font" mapstructure:"font"`
	Size    float64 `yaml:"size" mapstructure:"size"`
	Weight  string  `yaml:"weight" mapstructure:"weight"`
	Color   string  `yaml:"color" mapstructure:"color"`
}

// OutputConfig configures run bookkeeping outputs.
type OutputConfig struct {
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

// FetchConfig configures input dataset downloads.
type FetchConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	PopulationURL string `yaml:"population_url" mapstructure:"population_url"`
	BoundaryURL   string `yaml:"boundary_url" mapstructure:"boundary_url"`
	RateKBps      int    `yaml:"rate_kbps" mapstructure:"rate_kbps"`
	Retries       int    `yaml:"retries" mapstructure:"retries"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("hexrelief")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HEXRELIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("input.population_path", "data/kontur_population.gpkg")
	v.SetDefault("input.boundary_path", "data/gadm_adm1.gpkg")
	v.SetDefault("input.target_crs", "EPSG:3857")

	v.SetDefault("boundary.name_field", "NAME_1")

	v.SetDefault("raster.size", 1000)
	v.SetDefault("raster.field", "population")
	v.SetDefault("raster.clip", false)

	v.SetDefault("ramp.palette", []string{"#0b1e3f", "#2a4d69", "#f2b134", "#ed553b", "#fef4e8"})
	v.SetDefault("ramp.bias", 3.5)
	v.SetDefault("ramp.colors", 256)

	v.SetDefault("relief.zscale", 20.0)
	v.SetDefault("relief.solid", false)
	v.SetDefault("relief.shadow_depth", 0.0)
	v.SetDefault("relief.sun_azimuth", 315.0)
	v.SetDefault("relief.sun_altitude", 45.0)
	v.SetDefault("relief.shade_strength", 0.35)

	v.SetDefault("camera.theta", -20.0)
	v.SetDefault("camera.phi", 45.0)
	v.SetDefault("camera.zoom", 0.8)
	v.SetDefault("camera.fov", 0.0)

	v.SetDefault("render.path", "out/relief.png")
	v.SetDefault("render.light_directions", []float64{280, 100})
	v.SetDefault("render.light_altitudes", []float64{15, 80})
	v.SetDefault("render.light_colors", []string{"#f2e1d0", "#ffffff"})
	v.SetDefault("render.light_intensities", []float64{600, 100})
	v.SetDefault("render.width", 2000)
	v.SetDefault("render.height", 2000)
	v.SetDefault("render.samples", 300)
	v.SetDefault("render.bounces", 4)

	v.SetDefault("annotate.path", "out/relief_annotated.png")
	v.SetDefault("annotate.color", "#2a4d69")
	v.SetDefault("annotate.labels", []map[string]any{
		{"text": "Population density", "gravity": "northeast", "offset_x": 50, "offset_y": 50, "font": "Go", "size": 64, "weight": "bold"},
		{"text": "400m hexagon grid", "gravity": "northeast", "offset_x": 50, "offset_y": 130, "font": "Go", "size": 32, "weight": "regular"},
		{"text": "Data: Kontur Population, GADM", "gravity": "southwest", "offset_x": 30, "offset_y": 30, "font": "Go", "size": 20, "weight": "regular"},
	})

	v.SetDefault("fetch.dir", "data")
	v.SetDefault("fetch.rate_kbps", 0)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.timeout_secs", 600)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

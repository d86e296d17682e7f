// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SimilarityPearson = "pearson"
	SimilarityCosine  = "cosine"

	CandidatesAll      = "all"
	CandidatesCoRaters = "co-rated"
)

// Config is the configuration for the recommender.
type Config struct {
	Recommend RecommendConfig `mapstructure:"recommend"`
	Data      DataConfig      `mapstructure:"data"`
	Output    OutputConfig    `mapstructure:"output"`
}

// RecommendConfig holds the parameters of the neighbor-based engine.
type RecommendConfig struct {
	Metric     string `mapstructure:"metric" validate:"oneof=pearson cosine"`
	K          int    `mapstructure:"k" validate:"gte=1"`
	Count      int    `mapstructure:"count" validate:"gte=1"`
	Candidates string `mapstructure:"candidates" validate:"oneof=all co-rated"`
	Jobs       int    `mapstructure:"jobs" validate:"gte=1"`
	Filter     string `mapstructure:"filter"`
}

type DataConfig struct {
	Ratings          string   `mapstructure:"ratings" validate:"required_without=Database"`
	Catalog          string   `mapstructure:"catalog"`
	Separator        string   `mapstructure:"separator" validate:"required"`
	CatalogSeparator string   `mapstructure:"catalog_separator" validate:"required"`
	SkipHeader       int      `mapstructure:"skip_header" validate:"gte=0"`
	SkipMalformed    bool     `mapstructure:"skip_malformed"`
	Database         string   `mapstructure:"database"`
	TablePrefix      string   `mapstructure:"table_prefix"`
	Users            []string `mapstructure:"users"`
}

type OutputConfig struct {
	Path        string `mapstructure:"path"`
	MetricsFile string `mapstructure:"metrics_file"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Recommend: RecommendConfig{
			Metric:     SimilarityPearson,
			K:          2,
			Count:      10,
			Candidates: CandidatesAll,
			Jobs:       1,
		},
		Data: DataConfig{
			Separator:        ",",
			CatalogSeparator: ",",
			SkipMalformed:    true,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [recommend]
	v.SetDefault("recommend.metric", defaultConfig.Recommend.Metric)
	v.SetDefault("recommend.k", defaultConfig.Recommend.K)
	v.SetDefault("recommend.count", defaultConfig.Recommend.Count)
	v.SetDefault("recommend.candidates", defaultConfig.Recommend.Candidates)
	v.SetDefault("recommend.jobs", defaultConfig.Recommend.Jobs)
	v.SetDefault("recommend.filter", defaultConfig.Recommend.Filter)
	// [data]
	v.SetDefault("data.ratings", defaultConfig.Data.Ratings)
	v.SetDefault("data.catalog", defaultConfig.Data.Catalog)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.catalog_separator", defaultConfig.Data.CatalogSeparator)
	v.SetDefault("data.skip_header", defaultConfig.Data.SkipHeader)
	v.SetDefault("data.skip_malformed", defaultConfig.Data.SkipMalformed)
	v.SetDefault("data.database", defaultConfig.Data.Database)
	v.SetDefault("data.table_prefix", defaultConfig.Data.TablePrefix)
	v.SetDefault("data.users", defaultConfig.Data.Users)
	// [output]
	v.SetDefault("output.path", defaultConfig.Output.Path)
	v.SetDefault("output.metrics_file", defaultConfig.Output.MetricsFile)
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"metric":            "recommend.metric",
	"k":                 "recommend.k",
	"count":             "recommend.count",
	"candidates":        "recommend.candidates",
	"jobs":              "recommend.jobs",
	"filter":            "recommend.filter",
	"ratings":           "data.ratings",
	"catalog":           "data.catalog",
	"separator":         "data.separator",
	"catalog-separator": "data.catalog_separator",
	"skip-header":       "data.skip_header",
	"skip-malformed":    "data.skip_malformed",
	"database":          "data.database",
	"table-prefix":      "data.table_prefix",
	"users":             "data.users",
	"output":            "output.path",
	"metrics-file":      "output.metrics_file",
}

// LoadConfig loads configuration from a TOML or YAML file. Values are overridden by
// environment variables prefixed with KNN_ (e.g. KNN_RECOMMEND_K) and then by changed
// flags in flagSet. Both path and flagSet are optional.
func LoadConfig(path string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("knn")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if flagSet != nil {
		for name, key := range flagKeys {
			if flag := flagSet.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, errors.Trace(err)
				}
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks value ranges and enumerations.
func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

// Copyright 2026 gorse Project Authors
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

package main

import (
	"fmt"

	"github.com/gorse-io/knn/cmd/version"
	"github.com/gorse-io/knn/common/log"
	"github.com/gorse-io/knn/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          "knn",
		Short:        "User-based k-nearest-neighbor recommender.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// setup logger
			debug, _ := cmd.Flags().GetBool("debug")
			log.SetLogger(cmd.Flags(), debug, zap.String("command", cmd.Name()))
		},
	}
	flags := rootCommand.PersistentFlags()
	log.AddFlags(flags)
	flags.Bool("debug", false, "use debug log mode")
	flags.StringP("config", "c", "", "configuration file path")
	flags.Bool("progress", false, "show progress of loading files")
	addFlags(flags)
	rootCommand.AddCommand(
		newRecommendCommand(),
		newBatchCommand(),
		newImportCommand(),
		newVersionCommand(),
	)
	return rootCommand
}

// addFlags registers flags overriding the configuration file.
func addFlags(flags *pflag.FlagSet) {
	defaultConfig := config.GetDefaultConfig()
	// recommend
	flags.String("metric", defaultConfig.Recommend.Metric, "similarity metric (pearson, cosine)")
	flags.Int("k", defaultConfig.Recommend.K, "number of neighbors")
	flags.Int("count", defaultConfig.Recommend.Count, "number of recommended items")
	flags.String("candidates", defaultConfig.Recommend.Candidates, "candidate neighbors (all, co-rated)")
	flags.String("filter", defaultConfig.Recommend.Filter, "expression to filter items, e.g. 'item.Category contains \"Comedy\"'")
	// data
	flags.String("ratings", defaultConfig.Data.Ratings, "path of ratings file")
	flags.String("catalog", defaultConfig.Data.Catalog, "path of catalog file")
	flags.String("separator", defaultConfig.Data.Separator, "field separator of ratings file")
	flags.String("catalog-separator", defaultConfig.Data.CatalogSeparator, "field separator of catalog file")
	flags.Int("skip-header", defaultConfig.Data.SkipHeader, "number of header lines to skip")
	flags.Bool("skip-malformed", defaultConfig.Data.SkipMalformed, "skip malformed rows instead of failing")
	flags.String("database", defaultConfig.Data.Database, "database (sqlite://, mysql://, postgres://)")
	flags.String("table-prefix", defaultConfig.Data.TablePrefix, "prefix of database tables")
	// output
	flags.StringP("output", "o", defaultConfig.Output.Path, "path of output CSV file")
	flags.String("metrics-file", defaultConfig.Output.MetricsFile, "path to write metrics on exit")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	return config.LoadConfig(configPath, cmd.Flags())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

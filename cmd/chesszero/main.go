// chesszero manages the model artifacts of the chess policy/value network:
// it creates freshly initialized models, inspects weight digests, runs
// ad-hoc predictions, and synchronizes the best-model slot with its remote
// store.
//
// Usage:
//
//	chesszero [flags] init|digest|predict|fetch|push [FEN]
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/chesszero/chesszero/internal/board"
	"github.com/chesszero/chesszero/internal/config"
	"github.com/chesszero/chesszero/internal/model"
	"github.com/chesszero/chesszero/internal/params"
	"github.com/chesszero/chesszero/internal/remote"
	"github.com/chewxy/math32"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", "Path to the JSON configuration file. "+
		"If empty, the default configuration is used.")
	flagSet = flag.String("set", "", "Comma-separated key=value overrides applied on top "+
		"of the configuration, e.g. \"res_layer_num=3,cnn_filter_num=64\".")
	flagVariant = flag.String("variant", "residual", "Model architecture: \"residual\" or \"multi_scale\".")
	flagModelConfig = flag.String("model_config", "", "Architecture artifact path. "+
		"Defaults to the configuration's best-model config path.")
	flagModelWeight = flag.String("model_weight", "", "Weight artifact path. "+
		"Defaults to the configuration's best-model weight path.")
	flagTopMoves = flag.Int("top_moves", 10, "Number of highest-probability moves printed by predict.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: chesszero [flags] init|digest|predict|fetch|push [FEN]")
		os.Exit(2)
	}

	cfg := config.Default()
	if *flagConfig != "" {
		cfg = must.M1(config.Load(*flagConfig))
	}
	overrides := params.NewFromConfigString(*flagSet)
	must.M(params.Apply(overrides, cfg))
	for key := range overrides {
		klog.Exitf("unknown configuration override %q", key)
	}

	configPath, weightPath := artifactPaths(cfg)
	variant := must.M1(model.VariantFromString(*flagVariant))
	m := model.New(cfg, variant)

	switch command := flag.Arg(0); command {
	case "init":
		m.Build()
		must.M(m.Save(configPath, weightPath))
		fmt.Printf("initialized %s model at %s (digest %s)\n", variant, weightPath, m.Digest())

	case "digest":
		digest := must.M1(model.FetchDigest(weightPath))
		if digest == "" {
			klog.Exitf("no weight file at %s", weightPath)
		}
		fmt.Println(digest)

	case "predict":
		if flag.NArg() < 2 {
			klog.Exit("predict needs a FEN position argument")
		}
		if !must.M1(m.Load(configPath, weightPath)) {
			klog.Exitf("no model artifacts at %s and %s", configPath, weightPath)
		}
		predict(m, flag.Arg(1))

	case "fetch":
		mirror := remote.NewFTPMirror(cfg.Resource)
		configBytes, weightBytes, err := mirror.Fetch()
		must.M(err)
		must.M(os.WriteFile(configPath, configBytes, 0644))
		must.M(os.WriteFile(weightPath, weightBytes, 0644))
		fmt.Printf("fetched best model to %s and %s\n", configPath, weightPath)

	case "push":
		mirror := remote.NewFTPMirror(cfg.Resource)
		configBytes := must.M1(os.ReadFile(configPath))
		weightBytes := must.M1(os.ReadFile(weightPath))
		must.M(mirror.Push(configBytes, weightBytes))
		fmt.Printf("pushed best model from %s and %s\n", configPath, weightPath)

	default:
		klog.Exitf("unknown command %q", command)
	}
}

func artifactPaths(cfg *config.Config) (configPath, weightPath string) {
	configPath, weightPath = *flagModelConfig, *flagModelWeight
	if configPath == "" {
		configPath = cfg.Resource.ModelBestConfigPath
	}
	if weightPath == "" {
		weightPath = cfg.Resource.ModelBestWeightPath
	}
	return
}

func predict(m *model.ChessModel, fen string) {
	planes := must.M1(board.Planes(fen))
	pipe := m.GetPipes(1)[0]
	prediction := must.M1(pipe.Predict(planes))

	labels := board.MoveLabels()
	order := make([]int, len(prediction.Policy))
	for ii := range order {
		order[ii] = ii
	}
	sort.Slice(order, func(i, j int) bool {
		return prediction.Policy[order[i]] > prediction.Policy[order[j]]
	})

	var entropy float32
	for _, p := range prediction.Policy {
		if p > 0 {
			entropy -= p * math32.Log2(p)
		}
	}
	fmt.Printf("value: %+.4f  policy entropy: %.2f bits\n", prediction.Value, entropy)
	top := *flagTopMoves
	if top > len(order) {
		top = len(order)
	}
	for _, idx := range order[:top] {
		fmt.Printf("  %-6s %.4f\n", labels[idx], prediction.Policy[idx])
	}
}

// Command modelscout discovers network-exposed inference servers through an
// internet-wide search index, confirms them with unauthenticated HTTP
// probes, and writes an enriched JSON report.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"modelscout/internal/config"
	"modelscout/internal/domain"
	"modelscout/internal/report"
	"modelscout/internal/repository/sqlite"
	"modelscout/internal/scout"
	"modelscout/internal/shodan"
)

func main() {
	if err := run(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func run() error {
	var (
		familyFlag      = flag.String("family", "", "service family to hunt: ollama or llamacpp")
		hostFlag        = flag.String("host", "", "probe a single host (ip or ip:port) instead of running discovery")
		configFlag      = flag.String("config", "", "config file path (default: search standard locations)")
		outputFlag      = flag.String("output", "", "report file path (default: timestamped file in the working directory)")
		dbFlag          = flag.String("db", "", "run-history database path")
		noDBFlag        = flag.Bool("no-db", false, "disable run-history persistence")
		concurrencyFlag = flag.Int("concurrency", 0, "probe worker pool size")
		timeoutFlag     = flag.Duration("timeout", 0, "per-request probe timeout")
		pageLimitFlag   = flag.Int("page-limit", 0, "maximum search pages per query")
		quietFlag       = flag.Bool("quiet", false, "only log warnings and errors")
		verboseFlag     = flag.Bool("verbose", false, "log per-page and per-candidate detail")
	)
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case *verboseFlag:
		log.SetLevel(logrus.DebugLevel)
	case *quietFlag:
		log.SetLevel(logrus.WarnLevel)
	}

	cfg, loadedFrom, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}
	if loadedFrom != "" {
		log.Debugf("config loaded from %s", loadedFrom)
	}

	// Flags win over file and environment.
	if *familyFlag != "" {
		cfg.Family = config.Family(*familyFlag)
	}
	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}
	if *noDBFlag {
		cfg.Database.Disabled = true
	}
	if *concurrencyFlag > 0 {
		cfg.Probe.Concurrency = *concurrencyFlag
	}
	if *timeoutFlag > 0 {
		cfg.Probe.Timeout = config.Duration(*timeoutFlag)
	}
	if *pageLimitFlag > 0 {
		cfg.Discovery.PageLimit = *pageLimitFlag
	}
	if *outputFlag != "" {
		cfg.Output.Path = *outputFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Shodan.APIKey == "" {
		return fmt.Errorf("no Shodan API key: set %s or shodan.api_key in the config file", config.EnvAPIKey)
	}
	index, err := shodan.NewClient(cfg.Shodan.APIKey, shodan.WithLogger(log))
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipeline := scout.New(index, cfg, log)

	var result *scout.Result
	if *hostFlag != "" {
		candidate, err := parseHost(*hostFlag, cfg)
		if err != nil {
			return err
		}
		log.Infof("probing single host %s", candidate.HostPort())
		result, err = pipeline.Lookup(ctx, candidate)
		if err != nil {
			return err
		}
	} else {
		result, err = pipeline.Run(ctx)
		if err != nil {
			return err
		}
	}

	outputPath := cfg.Output.Path
	if outputPath == "" {
		outputPath = report.DefaultFilename(result.Family, time.Now())
	}
	if err := report.WriteJSON(outputPath, result.Report); err != nil {
		return err
	}
	log.Infof("results saved to %s", outputPath)

	if !cfg.Database.Disabled {
		if err := saveHistory(ctx, cfg.Database.Path, result); err != nil {
			// History is best effort; the report already exists on disk.
			log.WithError(err).Warn("could not record run history")
		}
	}

	if result.Report.Empty() {
		log.Warnf("no accessible %s servers found among %d candidates", result.Family, result.TotalCandidates)
	} else {
		log.Infof("confirmed %d %s servers", len(result.Report.Servers), result.Family)
	}
	return nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// parseHost accepts "ip" or "ip:port", defaulting the port from the family
// policy.
func parseHost(value string, cfg *config.Config) (domain.Candidate, error) {
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		// No port given; use the family default.
		port := config.OllamaDefaultPort
		if cfg.Family == config.FamilyLlamaCpp {
			port = config.LlamaCppCommonPorts[0]
		}
		return domain.Candidate{Address: value, Port: port}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return domain.Candidate{}, fmt.Errorf("invalid port in %q", value)
	}
	return domain.Candidate{Address: host, Port: port}, nil
}

func saveHistory(ctx context.Context, path string, result *scout.Result) error {
	repo, err := sqlite.New(path)
	if err != nil {
		return err
	}
	defer repo.Close()

	_, err = repo.SaveRun(ctx, sqlite.RunRecord{
		Family:          result.Family,
		StartedAt:       result.StartedAt,
		CompletedAt:     result.CompletedAt,
		TotalCandidates: result.TotalCandidates,
		Queries:         result.Queries,
	}, result.Report.Servers)
	return err
}

package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
	"github.com/mvoka/fieldline/modules/compliance/services"
)

type slaSeedFile struct {
	Version                 int           `yaml:"version"`
	WarningThresholdPercent int           `yaml:"warning_threshold_percent"`
	Tiers                   []slaSeedTier `yaml:"tiers"`
}

type slaSeedTier struct {
	Tier         string `yaml:"tier"`
	TotalMinutes int    `yaml:"total_minutes"`
}

func loadSlaSeed() (slaSeedFile, error) {
	path := os.Getenv("SLA_SEED_PATH")
	if path == "" {
		p, err := defaultSlaSeedPath()
		if err != nil {
			return slaSeedFile{}, err
		}
		path = p
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return slaSeedFile{}, err
	}
	return parseSlaSeedYAML(b)
}

func parseSlaSeedYAML(b []byte) (slaSeedFile, error) {
	var f slaSeedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return slaSeedFile{}, err
	}
	if f.Version != 1 {
		return slaSeedFile{}, errors.New("sla seed: unsupported version")
	}
	if len(f.Tiers) == 0 {
		return slaSeedFile{}, errors.New("sla seed: no tiers")
	}
	for _, t := range f.Tiers {
		tier := types.UrgencyTier(strings.ToUpper(strings.TrimSpace(t.Tier)))
		if !tier.Valid() {
			return slaSeedFile{}, fmt.Errorf("sla seed: unknown tier %q", t.Tier)
		}
		if t.TotalMinutes <= 0 {
			return slaSeedFile{}, fmt.Errorf("sla seed: tier %s needs a positive budget", tier)
		}
	}
	return f, nil
}

func defaultSlaSeedPath() (string, error) {
	path := "config/sla.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: sla seed config not found")
}

// seedSlaPolicies declares the SLA policy rows the monitor resolves
// against. EnsurePolicy never overwrites an existing row, so operator
// edits in the store survive restarts.
func seedSlaPolicies(ctx context.Context, store ports.ConfigStore, seed slaSeedFile) error {
	threshold := seed.WarningThresholdPercent
	if threshold <= 0 || threshold > 100 {
		threshold = 20
	}
	if err := store.EnsurePolicy(ctx, types.Policy{
		Key:          services.SlaWarningThresholdKey,
		Category:     types.PolicyCategorySla,
		DefaultValue: strconv.Itoa(threshold),
		Description:  "percent of SLA budget remaining at which status turns WARNING",
	}); err != nil {
		return err
	}

	for _, t := range seed.Tiers {
		tier := types.UrgencyTier(strings.ToUpper(strings.TrimSpace(t.Tier)))
		if err := store.EnsurePolicy(ctx, types.Policy{
			Key:          services.SlaTotalMinutesKey(tier),
			Category:     types.PolicyCategorySla,
			DefaultValue: strconv.Itoa(t.TotalMinutes),
			Description:  fmt.Sprintf("total minutes allowed for %s jobs", tier),
		}); err != nil {
			return err
		}
	}
	return nil
}

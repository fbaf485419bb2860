// delivery-sim replays a batch of delivery points against a zone scenario and
// reports which zones priced each one. It is a quick way to sanity-check a
// zone layout before activating it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platefleet/zone-engine/core"
	"github.com/platefleet/zone-engine/model"
)

type deliveryYAML struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type deliveryScenarioYAML struct {
	Deliveries []deliveryYAML `yaml:"deliveries"`
}

type runSummary struct {
	Total    int
	Matched  int
	Fallback int

	FeeRevenue float64
}

func main() {
	zonesPath := flag.String("zones", "configs/zones.example.yaml", "zone scenario YAML")
	deliveriesPath := flag.String("deliveries", "configs/deliveries.example.yaml", "delivery batch YAML")
	flag.Parse()

	zf, err := os.Open(*zonesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open zones %q: %v\n", *zonesPath, err)
		os.Exit(1)
	}
	reg, scenario, err := core.LoadZoneRegistry(zf)
	zf.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load zones: %v\n", err)
		os.Exit(1)
	}

	deliveries, err := loadDeliveries(*deliveriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load deliveries: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scope %q: %d zones, %d deliveries\n", scenario.Scope, reg.Len(), len(deliveries))

	resolver := core.NewPricingResolver(reg, scenario.Defaults)
	summary := runDeliveries(resolver, deliveries, os.Stdout)

	fmt.Printf("\n%d deliveries: %d matched a zone, %d fell back to defaults; total user fees %.2f\n",
		summary.Total, summary.Matched, summary.Fallback, summary.FeeRevenue)
}

func loadDeliveries(path string) ([]deliveryYAML, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var payload deliveryScenarioYAML
	if err := yaml.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}
	return payload.Deliveries, nil
}

// runDeliveries resolves every delivery point and prints one line per
// delivery: the matched zone IDs (or "defaults") and the effective pricing.
func runDeliveries(resolver *core.PricingResolver, deliveries []deliveryYAML, out io.Writer) runSummary {
	var summary runSummary
	for _, d := range deliveries {
		p := model.Point{Lat: d.Lat, Lon: d.Lon}
		matches := resolver.Matches(p)
		pricing, _, _ := resolver.ResolveInitial(p)

		summary.Total++
		summary.FeeRevenue += pricing.Fees

		coverage := "defaults"
		if len(matches) > 0 {
			summary.Matched++
			coverage = matches[0].ID
			for _, z := range matches[1:] {
				coverage += "," + z.ID
			}
		} else {
			summary.Fallback++
		}

		fmt.Fprintf(out, "%-16s (%.5f, %.5f) zones=%-24s full=%.1f%% partial=%.1f%% fees=%.2f\n",
			d.Name, d.Lat, d.Lon, coverage,
			pricing.FullCommission, pricing.PartialCommission, pricing.Fees,
		)
	}
	return summary
}

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric returns the sample of family name whose labels include labels.
func findMetric(reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	families, err := reg.Gather()
	if err != nil {
		return nil
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func counterValue(reg *prometheus.Registry, name string, labels map[string]string) float64 {
	if m := findMetric(reg, name, labels); m != nil {
		return m.GetCounter().GetValue()
	}
	return 0
}

func gaugeValue(reg *prometheus.Registry, name string) float64 {
	if m := findMetric(reg, name, nil); m != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}

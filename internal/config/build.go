package config

import (
	"fmt"

	"autopid/internal/protocol"
	"autopid/internal/store"
)

// BuildStore translates the loaded AllPids into a store.Store, filling
// in each standard parameter's bitfield layout from the built-in
// protocol.StandardPIDs table unless the config overrides it.
func BuildStore(cfg *AllPids) (*store.Store, error) {
	entries := make([]*store.PIDEntry, 0, len(cfg.Entries))
	for _, ec := range cfg.Entries {
		class, err := parseKind(ec.PIDClass)
		if err != nil {
			return nil, fmt.Errorf("config: pid entry %q: %w", ec.Cmd, err)
		}

		params := make([]*store.Parameter, 0, len(ec.Parameters))
		for _, pc := range ec.Parameters {
			p, err := buildParameter(pc)
			if err != nil {
				return nil, fmt.Errorf("config: parameter %q: %w", pc.Name, err)
			}
			params = append(params, p)
		}

		entries = append(entries, &store.PIDEntry{
			Cmd:        ec.Cmd,
			PIDInit:    ec.PIDInit,
			RXHeader:   ec.RXHeader,
			Class:      class,
			Parameters: params,
		})
	}
	return store.New(entries), nil
}

func buildParameter(pc ParameterConfig) (*store.Parameter, error) {
	kind, err := parseKind(pc.Kind)
	if err != nil {
		return nil, err
	}
	sensorType, err := parseSensorType(pc.SensorType)
	if err != nil {
		return nil, err
	}

	p := &store.Parameter{
		Name:            pc.Name,
		Kind:            kind,
		SensorType:      sensorType,
		Unit:            pc.Unit,
		Class:           pc.Class,
		PeriodMs:        pc.PeriodMs,
		Min:             protocol.UnconstrainedMin,
		Max:             protocol.UnconstrainedMax,
		Expression:      pc.Expression,
		Destination:     pc.Destination,
		DestinationType: pc.DestinationType,
	}
	if pc.Min != nil {
		p.Min = *pc.Min
	}
	if pc.Max != nil {
		p.Max = *pc.Max
	}

	if kind == store.KindStandard {
		layout, err := standardLayout(pc)
		if err != nil {
			return nil, err
		}
		p.StandardLayout = &layout
	}

	return p, nil
}

// standardLayout resolves a standard parameter's FieldLayout: an
// explicit per-field override in YAML takes precedence, otherwise the
// name must match an entry in protocol.StandardPIDs.
func standardLayout(pc ParameterConfig) (protocol.FieldLayout, error) {
	if pc.BitStart != nil && pc.BitLength != nil {
		layout := protocol.FieldLayout{
			BitStart:  *pc.BitStart,
			BitLength: *pc.BitLength,
			Scale:     1,
			Min:       protocol.UnconstrainedMin,
			Max:       protocol.UnconstrainedMax,
		}
		if pc.Scale != nil {
			layout.Scale = *pc.Scale
		}
		if pc.Offset != nil {
			layout.Offset = *pc.Offset
		}
		return layout, nil
	}

	entry, ok := protocol.StandardPIDs[pc.Name]
	if !ok {
		return protocol.FieldLayout{}, fmt.Errorf("no standard PID table entry or bitfield override for %q", pc.Name)
	}
	return entry.Layout, nil
}

func parseKind(s string) (store.Kind, error) {
	switch s {
	case "standard":
		return store.KindStandard, nil
	case "custom":
		return store.KindCustom, nil
	case "vehicle":
		return store.KindVehicleSpecific, nil
	default:
		return 0, fmt.Errorf("unknown pid class %q", s)
	}
}

func parseSensorType(s string) (store.SensorType, error) {
	switch s {
	case "", "numeric":
		return store.SensorNumeric, nil
	case "binary":
		return store.SensorBinary, nil
	default:
		return 0, fmt.Errorf("unknown sensor_type %q", s)
	}
}

package core

import (
	"fmt"
	"sort"
)

// TransportWilcockCrowe selects the surface-based Wilcock and Crowe
// (2003) bedload law, currently the only registered transport model.
const TransportWilcockCrowe = "WilcockCrowe"

// TransportModel computes the per-parcel downstream virtual velocity
// for one step. Implementations read the engine's per-step working
// state and write st.velocity; inactive parcels must end up with
// zero velocity.
type TransportModel interface {
	Name() string
	ComputeVelocities(tr *Transporter) error
}

var transportModels = map[string]func() TransportModel{}

// RegisterTransportModel adds a transport law to the selection
// table. Registering a duplicate name panics; this is a programming
// error, not a runtime condition.
func RegisterTransportModel(name string, factory func() TransportModel) {
	if _, exists := transportModels[name]; exists {
		panic(fmt.Sprintf("transport model %q registered twice", name))
	}
	transportModels[name] = factory
}

// SupportedTransportMethods lists the registered model names.
func SupportedTransportMethods() []string {
	names := make([]string, 0, len(transportModels))
	for name := range transportModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func transportModelFor(name string) (TransportModel, error) {
	factory, ok := transportModels[name]
	if !ok {
		return nil, fmt.Errorf("%w: transport method %q not supported (have %v)",
			ErrConfiguration, name, SupportedTransportMethods())
	}
	return factory(), nil
}

package domain

// Mutation is a single typed write intent. A Plan of mutations is executed
// atomically by the repo layer, in order.
type Mutation interface {
	mutation()
}

// InsertTrip creates a trip row.
type InsertTrip struct{ Trip Trip }

// UpdateTrip overwrites the mutable columns of a trip row.
type UpdateTrip struct{ Trip Trip }

// InsertDestination creates a destination row.
type InsertDestination struct{ Destination Destination }

// UpdateDestination overwrites the mutable columns of a destination row.
type UpdateDestination struct{ Destination Destination }

// InsertLog creates the log entry of a destination being started.
type InsertLog struct{ Log LogEntry }

// UpdateLog overwrites the closing columns of a log entry.
type UpdateLog struct{ Log LogEntry }

func (InsertTrip) mutation()        {}
func (UpdateTrip) mutation()        {}
func (InsertDestination) mutation() {}
func (UpdateDestination) mutation() {}
func (InsertLog) mutation()         {}
func (UpdateLog) mutation()         {}

// Plan is an ordered list of mutations built by the service layer.
// The builder methods return the plan so calls can be chained.
type Plan struct {
	Mutations []Mutation
}

func (p *Plan) add(m Mutation) *Plan {
	p.Mutations = append(p.Mutations, m)
	return p
}

func (p *Plan) InsertTrip(t Trip) *Plan               { return p.add(InsertTrip{Trip: t}) }
func (p *Plan) UpdateTrip(t Trip) *Plan               { return p.add(UpdateTrip{Trip: t}) }
func (p *Plan) InsertDestination(d Destination) *Plan { return p.add(InsertDestination{Destination: d}) }
func (p *Plan) UpdateDestination(d Destination) *Plan { return p.add(UpdateDestination{Destination: d}) }
func (p *Plan) InsertLog(l LogEntry) *Plan            { return p.add(InsertLog{Log: l}) }
func (p *Plan) UpdateLog(l LogEntry) *Plan            { return p.add(UpdateLog{Log: l}) }

// Empty reports whether the plan has nothing to write.
func (p *Plan) Empty() bool { return len(p.Mutations) == 0 }

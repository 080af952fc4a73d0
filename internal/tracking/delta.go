package tracking

// ComputeDelta returns the events of current that do not appear anywhere in
// previous, keeping current's order. With no previous snapshot the whole event
// list is new. Both snapshots must hold exactly one shipment record.
func ComputeDelta(current, previous *Snapshot) ([]Event, error) {
	cur, err := current.Shipment()
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return append([]Event(nil), cur.Events...), nil
	}
	prev, err := previous.Shipment()
	if err != nil {
		return nil, err
	}

	seen := make(map[Event]struct{}, len(prev.Events))
	for _, e := range prev.Events {
		seen[e] = struct{}{}
	}
	var out []Event
	for _, e := range cur.Events {
		if _, ok := seen[e]; ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

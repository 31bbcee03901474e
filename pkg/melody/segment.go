package melody

// Runs folds seq into its maximal runs of equal values, in order.
// An empty sequence has no runs.
func Runs(seq []int) []Run {
	var runs []Run
	var cur *Run
	for i, v := range seq {
		switch {
		case cur == nil:
			cur = &Run{Value: v, Start: i, Length: 1}
		case v == cur.Value:
			cur.Length++
		default:
			runs = append(runs, *cur)
			cur = &Run{Value: v, Start: i, Length: 1}
		}
	}
	if cur != nil {
		runs = append(runs, *cur)
	}
	return runs
}

// Segment converts a quantized sequence into notes. Unvoiced runs are dropped,
// as are voiced runs shorter than cfg.MinDuration. Notes come out in onset order.
func Segment(seq []int, cfg Config) []Note {
	notes := make([]Note, 0)
	for _, r := range Runs(seq) {
		if r.Value == Unvoiced {
			continue
		}
		dur := cfg.FramesToSeconds(r.Length)
		if dur < cfg.MinDuration {
			continue
		}
		notes = append(notes, Note{
			Onset:    cfg.FramesToSeconds(r.Start),
			Duration: dur,
			Pitch:    r.Value,
		})
	}
	return notes
}

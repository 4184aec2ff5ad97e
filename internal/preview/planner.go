package preview

// PlanSections chooses which windows of a source of the given duration to
// sample. Precedence: explicit Sections, then AutoSections evenly spread
// over [0, duration-SectionDuration], then a single window at zero.
//
// Explicit sections are returned verbatim; ClampSections trims them later.
// When the source is shorter than SectionDuration the auto interval is held
// at zero instead of going negative, so every window starts at zero.
func PlanSections(duration float64, opts Options) []Section {
	if len(opts.Sections) > 0 {
		plan := make([]Section, len(opts.Sections))
		copy(plan, opts.Sections)
		return plan
	}

	if opts.AutoSections > 0 {
		n := opts.AutoSections
		interval := 0.0
		if n > 1 {
			interval = (duration - opts.SectionDuration) / float64(n-1)
		}
		if interval < 0 {
			interval = 0
		}

		plan := make([]Section, n)
		for i := range plan {
			plan[i] = Section{StartTime: float64(i) * interval, Duration: opts.SectionDuration}
		}
		return plan
	}

	return []Section{{StartTime: 0, Duration: opts.SectionDuration}}
}

// ClampSections returns a new plan in which every window ends no later than
// sourceDuration. Windows are shortened to fit; those left with no positive
// duration, or starting before zero, are dropped. Order is preserved.
func ClampSections(sections []Section, sourceDuration float64) []Section {
	clamped := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.StartTime < 0 {
			continue
		}
		if s.End() > sourceDuration {
			s.Duration = sourceDuration - s.StartTime
		}
		if s.Duration <= 0 {
			continue
		}
		clamped = append(clamped, s)
	}
	return clamped
}

// AutoFramesPerSection sizes the per-section frame budget from the number
// of native frames in a window: [5,30] for windows up to 3s, [10,45] above.
func AutoFramesPerSection(sourceFPS, sectionDuration float64) int {
	native := int(sourceFPS * sectionDuration)
	if sectionDuration <= 3 {
		return clamp(native, 5, 30)
	}
	return clamp(native, 10, 45)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package edits

// Set is an ordered mapping from operation to parameters. Replacing an
// existing key keeps its original position.
type Set struct {
	keys  []Op
	items map[Op]Edit
}

// New returns a set holding es in order.
func New(es ...Edit) *Set {
	s := &Set{items: make(map[Op]Edit, len(es))}
	for _, e := range es {
		s.Put(e)
	}
	return s
}

// Len returns the number of keys. A nil set is empty.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the operations in iteration order.
func (s *Set) Keys() []Op {
	if s == nil {
		return nil
	}
	out := make([]Op, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the edit for op, or nil.
func (s *Set) Get(op Op) Edit {
	if s == nil {
		return nil
	}
	return s.items[op]
}

// Has reports whether op is present.
func (s *Set) Has(op Op) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[op]
	return ok
}

// Put stores e under e.Op().
func (s *Set) Put(e Edit) {
	if s.items == nil {
		s.items = make(map[Op]Edit)
	}
	op := e.Op()
	if _, ok := s.items[op]; !ok {
		s.keys = append(s.keys, op)
	}
	s.items[op] = e
}

// Delete removes op.
func (s *Set) Delete(op Op) {
	if s == nil {
		return
	}
	if _, ok := s.items[op]; !ok {
		return
	}
	delete(s.items, op)
	for i, k := range s.keys {
		if k == op {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the edit stored under from to to, keeping its position.
// Only quality blocks can change key; for them the block's Format follows.
func (s *Set) Rename(from, to Op) {
	e, ok := s.items[from]
	if !ok || from == to {
		return
	}
	if q, isQ := e.(*Quality); isQ {
		c := *q
		c.Format = Format(to)
		e = &c
	} else {
		return
	}
	s.Delete(to)
	for i, k := range s.keys {
		if k == from {
			s.keys[i] = to
		}
	}
	delete(s.items, from)
	s.items[to] = e
}

// Clone returns a deep copy; edits in the copy may be modified freely.
func (s *Set) Clone() *Set {
	out := &Set{items: make(map[Op]Edit, s.Len())}
	if s == nil {
		return out
	}
	out.keys = append(out.keys, s.keys...)
	for k, e := range s.items {
		out.items[k] = cloneEdit(e)
	}
	return out
}

// Resize returns the resize edit, or nil.
func (s *Set) Resize() *Resize {
	r, _ := s.Get(OpResize).(*Resize)
	return r
}

// Format returns the toFormat value, or "".
func (s *Set) Format() Format {
	if t, ok := s.Get(OpToFormat).(*ToFormat); ok {
		return t.Format
	}
	return ""
}

// StripsMetadata reports whether rotate is the explicit null sentinel.
func (s *Set) StripsMetadata() bool {
	r, ok := s.Get(OpRotate).(*Rotate)
	return ok && r.Angle == nil
}

// Merge folds sets left to right into a new set. Scalar fields of later
// edits overwrite, object-valued edits merge field by field and list
// fields union. Inputs are not modified.
func Merge(sets ...*Set) *Set {
	out := New()
	for _, s := range sets {
		for _, op := range s.Keys() {
			next := s.Get(op)
			prev := out.Get(op)
			if prev == nil {
				out.Put(cloneEdit(next))
				continue
			}
			out.Put(mergeEdit(prev, next))
		}
	}
	return out
}

func mergeEdit(prev, next Edit) Edit {
	switch n := next.(type) {
	case *Resize:
		p, ok := prev.(*Resize)
		if !ok {
			break
		}
		r := *p
		if n.Width != nil {
			r.Width = n.Width
		}
		if n.Height != nil {
			r.Height = n.Height
		}
		if n.Fit != "" {
			r.Fit = n.Fit
		}
		if n.Position != "" {
			r.Position = n.Position
		}
		if n.Background != nil {
			r.Background = n.Background
		}
		if n.WithoutEnlargement != nil {
			r.WithoutEnlargement = n.WithoutEnlargement
		}
		if n.WithoutReduction != nil {
			r.WithoutReduction = n.WithoutReduction
		}
		if n.Ratio != nil {
			r.Ratio = n.Ratio
		}
		return &r
	case *SmartCrop:
		p, ok := prev.(*SmartCrop)
		if !ok {
			break
		}
		c := *p
		if n.FaceIndex != nil {
			c.FaceIndex = n.FaceIndex
		}
		if n.Padding != nil {
			c.Padding = n.Padding
		}
		return &c
	case *RoundCrop:
		p, ok := prev.(*RoundCrop)
		if !ok {
			break
		}
		c := *p
		if n.Top != nil {
			c.Top = n.Top
		}
		if n.Left != nil {
			c.Left = n.Left
		}
		if n.Rx != nil {
			c.Rx = n.Rx
		}
		if n.Ry != nil {
			c.Ry = n.Ry
		}
		return &c
	case *Overlay:
		p, ok := prev.(*Overlay)
		if !ok {
			break
		}
		o := *p
		if n.Bucket != "" {
			o.Bucket = n.Bucket
		}
		if n.Key != "" {
			o.Key = n.Key
		}
		if n.Alpha != nil {
			o.Alpha = n.Alpha
		}
		if n.WRatio != nil {
			o.WRatio = n.WRatio
		}
		if n.HRatio != nil {
			o.HRatio = n.HRatio
		}
		if n.Options.Left != nil {
			o.Options.Left = n.Options.Left
		}
		if n.Options.Top != nil {
			o.Options.Top = n.Options.Top
		}
		return &o
	case *ContentModeration:
		p, ok := prev.(*ContentModeration)
		if !ok {
			break
		}
		c := *p
		if n.MinConfidence != nil {
			c.MinConfidence = n.MinConfidence
		}
		if n.Blur != nil {
			c.Blur = n.Blur
		}
		c.ModerationLabels = union(p.ModerationLabels, n.ModerationLabels)
		return &c
	case *Flatten:
		p, ok := prev.(*Flatten)
		if !ok {
			break
		}
		f := *p
		if n.Background != nil {
			f.Background = n.Background
		}
		return &f
	case *Quality:
		p, ok := prev.(*Quality)
		if !ok {
			break
		}
		q := *p
		if n.Quality != nil {
			q.Quality = n.Quality
		}
		if n.Lossless != nil {
			q.Lossless = n.Lossless
		}
		if n.Progressive != nil {
			q.Progressive = n.Progressive
		}
		return &q
	}
	return cloneEdit(next)
}

// union keeps nil distinct from empty: an empty allow-list still restricts.
func union(a, b []string) []string {
	if a == nil && b == nil {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func cloneEdit(e Edit) Edit {
	switch v := e.(type) {
	case *Resize:
		c := *v
		return &c
	case *Crop:
		c := *v
		return &c
	case *SmartCrop:
		c := *v
		return &c
	case *RoundCrop:
		c := *v
		return &c
	case *Overlay:
		c := *v
		return &c
	case *ContentModeration:
		c := *v
		if v.ModerationLabels != nil {
			c.ModerationLabels = append([]string{}, v.ModerationLabels...)
		}
		return &c
	case *Toggle:
		c := *v
		return &c
	case *Tint:
		c := *v
		return &c
	case *Blur:
		c := *v
		return &c
	case *Sharpen:
		c := *v
		return &c
	case *Convolve:
		c := *v
		c.Kernel = append([]float64(nil), v.Kernel...)
		return &c
	case *Rotate:
		c := *v
		return &c
	case *ToFormat:
		c := *v
		return &c
	case *Flatten:
		c := *v
		return &c
	case *Quality:
		c := *v
		return &c
	case *Unknown:
		c := *v
		c.Raw = append([]byte(nil), v.Raw...)
		return &c
	}
	return e
}

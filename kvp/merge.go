package kvp

// MergeFrames composes frames ordered from strongest to weakest. A slot set
// in a stronger frame wins; nested frames merge slot by slot, so a weaker
// layer still fills keys the stronger one leaves out. Nil layers are
// skipped and the inputs are never modified.
func MergeFrames(layers ...*Frame) *Frame {
	merged := NewFrame()
	for i := len(layers) - 1; i >= 0; i-- {
		mergeInto(merged, layers[i])
	}
	return merged
}

func mergeInto(dst, strong *Frame) {
	strong.ForEachSlot(func(key string, value *Value) {
		if value.Type() == TypeFrame {
			existing := dst.GetValue(key)
			if existing.Type() == TypeFrame {
				nested := existing.Frame().Copy()
				mergeInto(nested, value.Frame())
				dst.SetValue(key, NewFrameValue(nested))
				return
			}
		}
		dst.SetValue(key, value.Copy())
	})
}

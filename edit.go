package qof

// BeginEdit opens an edit on inst. Only the outermost level returns true;
// at that point the backend's begin hook runs, or the instance is marked
// dirty when the backend has none.
func (inst *Instance) BeginEdit() bool {
	if inst == nil {
		return false
	}
	inst.editLevel++
	if inst.editLevel > 1 {
		return false
	}
	if inst.editLevel <= 0 {
		inst.editLevel = 1
	}
	be := inst.Backend()
	if be.BeginExists() {
		be.RunBegin(inst)
	} else {
		inst.dirty = true
	}
	return true
}

// CommitEdit closes one edit level and returns true once the outermost
// level is closed, telling the caller to commit.
//
// Closing past zero on a dirty instance (a commit with no matching begin)
// re-runs the backend's begin hook before settling the level at zero.
func (inst *Instance) CommitEdit() bool {
	if inst == nil {
		return false
	}
	inst.editLevel--
	if inst.editLevel > 0 {
		return false
	}
	// TODO: confirm whether the unmatched-commit path should call the commit hook instead of begin.
	if inst.editLevel == -1 && inst.dirty {
		be := inst.Backend()
		if be.BeginExists() {
			be.RunBegin(inst)
		}
		inst.editLevel = 0
	}
	if inst.editLevel < 0 {
		inst.editLevel = 0
	}
	return true
}

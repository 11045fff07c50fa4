package executor

import (
	"slices"
	"strings"
)

type counter struct {
	done  int64
	total int64
}

// StageProgress aggregates the nodes sharing a stage label.
type StageProgress struct {
	Stage string
	Done  int64
	Total int64
}

// Progress is a snapshot of the whole graph. Each node weighs as many items as it declared
// through Context.Progress, or one item when it never reported.
type Progress struct {
	Done   int64
	Total  int64
	Stages []StageProgress
}

// Fraction returns overall completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// Progress returns the current snapshot.
func (e *Executor) Progress() Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byStage := make(map[string]*StageProgress)
	var p Progress
	for n, state := range e.states {
		c, reported := e.counters[n]
		done, total := int64(0), int64(1)
		if reported && c.total > 0 {
			done, total = min(c.done, c.total), c.total
		}
		if state.IsTerminal() {
			done = total
		}

		stage := n.Stage()
		sp, ok := byStage[stage]
		if !ok {
			sp = &StageProgress{Stage: stage}
			byStage[stage] = sp
		}
		sp.Done += done
		sp.Total += total
		p.Done += done
		p.Total += total
	}

	for _, sp := range byStage {
		p.Stages = append(p.Stages, *sp)
	}
	slices.SortFunc(p.Stages, func(a, b StageProgress) int { return strings.Compare(a.Stage, b.Stage) })
	return p
}

func (e *Executor) notifyProgress() {
	select {
	case e.progressCh <- struct{}{}:
	default:
	}
}

// dispatchProgress forwards coalesced snapshots to observers until the graph finished.
func (e *Executor) dispatchProgress() {
	for {
		select {
		case <-e.progressCh:
			e.emitProgress()
		case <-e.done:
			e.emitProgress()
			return
		}
	}
}

func (e *Executor) emitProgress() {
	e.mu.RLock()
	fns := slices.Clone(e.progressFns)
	e.mu.RUnlock()
	if len(fns) == 0 {
		return
	}
	p := e.Progress()
	for _, fn := range fns {
		fn(p)
	}
}

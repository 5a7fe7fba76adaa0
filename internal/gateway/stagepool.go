package gateway

// stagePool is a small fixed-size goroutine pool dedicated to one
// pipeline stage (STT, LLM, or TTS). Each stage gets its own pool so a
// stuck call in one stage can't starve the others — the resource model
// this mirrors the teacher's single mutex-serialized transport with an
// explicit per-stage concurrency ceiling instead.
type stagePool struct {
	jobs chan func()
}

func newStagePool(workers int) *stagePool {
	if workers <= 0 {
		workers = 1
	}
	p := &stagePool{jobs: make(chan func(), 256)}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *stagePool) run() {
	for job := range p.jobs {
		job()
	}
}

// Submit queues job for execution on one of the pool's workers. Submit
// itself never blocks the caller beyond the channel's buffer capacity.
func (p *stagePool) Submit(job func()) {
	p.jobs <- job
}

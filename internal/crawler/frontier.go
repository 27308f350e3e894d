package crawler

import (
	"container/heap"
	"sync"

	"github.com/nao1215/rufus/internal/model"
)

// Frontier is the priority-ordered set of URLs waiting to be fetched,
// together with the set of every URL that ever entered it.
//
// A URL is marked visited when it is enqueued, not when it is dequeued, so
// each normalized URL is handed out at most once between two Resets. Lower
// priorities are dequeued first; equal priorities leave in insertion order.
// All methods are safe for concurrent use.
type Frontier struct {
	mu      sync.Mutex
	queue   targetHeap
	visited map[string]struct{}
	seq     uint64
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:   make(targetHeap, 0),
		visited: make(map[string]struct{}),
	}
}

// Enqueue adds rawURL at the given priority and depth.
// It returns false, leaving the frontier unchanged, when the URL cannot be
// normalized or was already enqueued in this pass.
func (f *Frontier) Enqueue(rawURL string, priority float64, depth int) bool {
	key, err := Normalize(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.visited[key]; seen {
		return false
	}
	f.visited[key] = struct{}{}
	f.seq++
	heap.Push(&f.queue, queuedTarget{
		target: model.CrawlTarget{URL: key, Priority: priority, Depth: depth},
		seq:    f.seq,
	})
	return true
}

// Dequeue removes and returns the target with the lowest priority.
func (f *Frontier) Dequeue() (model.CrawlTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return model.CrawlTarget{}, false
	}
	item, _ := heap.Pop(&f.queue).(queuedTarget)
	return item.target, true
}

// Seen reports whether rawURL was already enqueued in this pass.
func (f *Frontier) Seen(rawURL string) bool {
	key, err := Normalize(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

// Len returns the number of targets waiting in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Visited returns the number of distinct URLs enqueued since the last Reset.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Reset empties the queue and forgets every visited URL.
func (f *Frontier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = make(targetHeap, 0)
	f.visited = make(map[string]struct{})
	f.seq = 0
}

type queuedTarget struct {
	target model.CrawlTarget
	seq    uint64
}

// targetHeap implements heap.Interface ordered by (priority, seq).
type targetHeap []queuedTarget

func (h targetHeap) Len() int { return len(h) }

func (h targetHeap) Less(i, j int) bool {
	if h[i].target.Priority != h[j].target.Priority {
		return h[i].target.Priority < h[j].target.Priority
	}
	return h[i].seq < h[j].seq
}

func (h targetHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *targetHeap) Push(x any) {
	item, _ := x.(queuedTarget)
	*h = append(*h, item)
}

func (h *targetHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

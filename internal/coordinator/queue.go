package coordinator

// workQueue is a FIFO of project keys that holds each key at most once.
// It is not safe for concurrent use; the coordinator lock guards it.
type workQueue struct {
	items   []string
	members map[string]struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{members: make(map[string]struct{})}
}

// push appends key unless it is already queued.
func (q *workQueue) push(key string) bool {
	if _, ok := q.members[key]; ok {
		return false
	}
	q.items = append(q.items, key)
	q.members[key] = struct{}{}
	return true
}

func (q *workQueue) pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	key := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.members, key)
	return key, true
}

func (q *workQueue) contains(key string) bool {
	_, ok := q.members[key]
	return ok
}

func (q *workQueue) len() int {
	return len(q.items)
}

func (q *workQueue) snapshot() []string {
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

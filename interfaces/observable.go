package interfaces

import "sync"

type Observable interface {
	Subscribe(observer ValueNotifier)
	Unsubscribe(observer ValueNotifier)
}

// ObserverList fans a reading out to its subscribers in subscription order.
type ObserverList struct {
	mu   sync.RWMutex
	list []ValueNotifier
}

func (l *ObserverList) Subscribe(observer ValueNotifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append(l.list, observer)
}

func (l *ObserverList) Unsubscribe(observer ValueNotifier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, o := range l.list {
		if o == observer {
			l.list = append(l.list[:i:i], l.list[i+1:]...)
			break
		}
	}
}

func (l *ObserverList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.list)
}

func (l *ObserverList) NotifyValue(v uint32) {
	l.mu.RLock()
	list := l.list
	l.mu.RUnlock()

	for _, o := range list {
		o.NotifyValue(v)
	}
}

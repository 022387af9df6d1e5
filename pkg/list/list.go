package list

// List struct.
type List[T any] struct {
	head *Link[T]
	tail *Link[T]
	size int
}

// Create a new list.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Get the number of links.
func (list *List[T]) Len() int {
	return list.size
}

// Add an element to the end of the list. Returns the added link.
func (list *List[T]) PushTail(value T) *Link[T] {
	newLink := &Link[T]{list: list, value: value}
	if list.head == nil {
		list.head = newLink
		list.tail = newLink
	} else {
		newLink.prev = list.tail
		list.tail.next = newLink
		list.tail = newLink
	}
	list.size++
	return newLink
}

// PopHead removes the head and returns its value; ok is false on an empty list.
func (list *List[T]) PopHead() (value T, ok bool) {
	if list.head == nil {
		return value, false
	}
	link := list.head
	link.PopSelf()
	return link.value, true
}

// Find an element in a list given a boolean function, f, that evaluates to true on the desired element.
func (list *List[T]) Find(f func(*Link[T]) bool) *Link[T] {
	for cur := list.head; cur != nil; cur = cur.next {
		if f(cur) {
			return cur
		}
	}
	return nil
}

// Apply a function to every element in the list, head first.
func (list *List[T]) Map(f func(*Link[T])) {
	for cur := list.head; cur != nil; cur = cur.next {
		f(cur)
	}
}

// Link struct.
type Link[T any] struct {
	list  *List[T]
	prev  *Link[T]
	next  *Link[T]
	value T
}

// Get the link's value.
func (link *Link[T]) GetKey() T {
	return link.value
}

// Remove this link from its list.
func (link *Link[T]) PopSelf() {
	list := link.list
	if list == nil {
		return
	}
	if list.head == link {
		list.head = link.next
	}
	if list.tail == link {
		list.tail = link.prev
	}
	if link.next != nil {
		link.next.prev = link.prev
	}
	if link.prev != nil {
		link.prev.next = link.next
	}
	link.prev, link.next, link.list = nil, nil, nil
	list.size--
}

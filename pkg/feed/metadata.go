package feed

// Key identifies one metadata entry by XML namespace and local name.
type Key struct {
	Namespace string
	Name      string
}

// Metadata is an ordered mapping from (namespace, name) to value. It holds
// the attributes that feeds attach in foreign namespaces, such as the
// resolved revision of an implementation.
//
// The zero value is an empty, usable Metadata.
type Metadata struct {
	keys   []Key
	values map[Key]string
}

// Set inserts or overwrites an entry. New keys keep insertion order.
func (m *Metadata) Set(namespace, name, value string) {
	k := Key{Namespace: namespace, Name: name}
	if m.values == nil {
		m.values = make(map[Key]string)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = value
}

// Get returns the value stored for (namespace, name).
func (m Metadata) Get(namespace, name string) (string, bool) {
	v, ok := m.values[Key{Namespace: namespace, Name: name}]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m Metadata) Keys() []Key {
	return append([]Key(nil), m.keys...)
}

// Len returns the number of entries.
func (m Metadata) Len() int { return len(m.keys) }

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	var c Metadata
	for _, k := range m.keys {
		c.Set(k.Namespace, k.Name, m.values[k])
	}
	return c
}

// Revision returns the resolved version-control revision, if recorded.
func (m Metadata) Revision() string {
	v, _ := m.Get(Namespace, AttrRevision)
	return v
}

// Href returns the "href" attribute in any namespace, preferring the
// unqualified one.
func (m Metadata) Href() string {
	if v, ok := m.Get("", "href"); ok {
		return v
	}
	for _, k := range m.keys {
		if k.Name == "href" {
			return m.values[k]
		}
	}
	return ""
}

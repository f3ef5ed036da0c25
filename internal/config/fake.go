package config

// FakeBackend is a test double holding settings in memory.
type FakeBackend struct {
	// Stored holds the persisted settings; nil means nothing stored.
	Stored *Persisted

	// LoadError, if set, will be returned by Load.
	LoadError error

	// SaveError, if set, will be returned by Save.
	SaveError error

	// Saves counts successful Save calls.
	Saves int
}

// NewFakeBackend creates an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

// Load returns the stored settings, if any.
func (f *FakeBackend) Load() (Persisted, bool, error) {
	if f.LoadError != nil {
		return Persisted{}, false, f.LoadError
	}
	if f.Stored == nil {
		return Persisted{}, false, nil
	}
	return *f.Stored, true, nil
}

// Save records the settings.
func (f *FakeBackend) Save(p Persisted) error {
	if f.SaveError != nil {
		return f.SaveError
	}
	cp := p
	f.Stored = &cp
	f.Saves++
	return nil
}

package errors

import "fmt"

// Builder 构造并注册 Errno，HTTP 状态默认取类别对应的值。
//
//	var ErrLLMUnavailable = errors.NewBuilder(ServiceDocuVerse, errors.CategoryNetwork, 1).
//	    Message("Language model is unavailable", "语言模型不可用").
//	    MustBuild()
type Builder struct {
	service, category, sequence int
	http                        int
	messageEN, messageZH        string
}

// NewBuilder starts an Errno with the given code parts.
func NewBuilder(service, category, sequence int) *Builder {
	return &Builder{service: service, category: category, sequence: sequence}
}

// HTTP overrides the category's default HTTP status.
func (b *Builder) HTTP(status int) *Builder {
	b.http = status
	return b
}

// Message sets the English and Chinese messages.
func (b *Builder) Message(en, zh string) *Builder {
	b.messageEN, b.messageZH = en, zh
	return b
}

// Build validates the parts and registers the Errno.
func (b *Builder) Build() (*Errno, error) {
	switch {
	case b.service < 0 || b.service > 99:
		return nil, fmt.Errorf("service code must be 0-99, got %d", b.service)
	case b.category < 0 || b.category > 99:
		return nil, fmt.Errorf("category code must be 0-99, got %d", b.category)
	case b.sequence < 0 || b.sequence > 999:
		return nil, fmt.Errorf("sequence must be 0-999, got %d", b.sequence)
	case b.messageEN == "":
		return nil, fmt.Errorf("english message is required")
	}

	code := MakeCode(b.service, b.category, b.sequence)
	if _, exists := Lookup(code); exists {
		return nil, fmt.Errorf("errno code %d already registered", code)
	}
	status := b.http
	if status == 0 {
		status = StatusForCategory(b.category)
	}
	return Register(&Errno{Code: code, HTTP: status, MessageEN: b.messageEN, MessageZH: b.messageZH}), nil
}

// MustBuild is like Build but panics on error. Use it for package-level errors.
func (b *Builder) MustBuild() *Errno {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// NewRequestErr registers a 400 error.
func NewRequestErr(service, sequence int, en, zh string) *Errno {
	return NewBuilder(service, CategoryRequest, sequence).Message(en, zh).MustBuild()
}

// NewNotFoundErr registers a 404 error.
func NewNotFoundErr(service, sequence int, en, zh string) *Errno {
	return NewBuilder(service, CategoryResource, sequence).Message(en, zh).MustBuild()
}

// NewConflictErr registers a 409 error.
func NewConflictErr(service, sequence int, en, zh string) *Errno {
	return NewBuilder(service, CategoryConflict, sequence).Message(en, zh).MustBuild()
}

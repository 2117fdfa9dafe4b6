// Package model contains the domain types shared by every layer.
package model

// Post is a single bulletin-board entry.
// This is a pure domain model with no database-specific dependencies or tags.
// Values are passed by copy; the With* helpers return an updated copy and never
// touch the receiver.
type Post struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	ImagePath string `json:"imagePath"`
}

// HasImage reports whether an uploaded image is associated with the post.
func (p Post) HasImage() bool {
	return p.ImagePath != ""
}

// IsNew reports whether the post has not been assigned an id by the store yet.
func (p Post) IsNew() bool {
	return p.ID == 0
}

// WithID returns a copy of p carrying the store-assigned id.
func (p Post) WithID(id int64) Post {
	p.ID = id
	return p
}

// WithText returns a copy of p with title and content replaced.
func (p Post) WithText(title, content string) Post {
	p.Title = title
	p.Content = content
	return p
}

// WithImagePath returns a copy of p pointing at the given image location.
func (p Post) WithImagePath(path string) Post {
	p.ImagePath = path
	return p
}

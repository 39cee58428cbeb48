package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		store  Store
		key    string
		want   string
	}{
		{
			name:  "with region",
			store: Store{bucket: "kb-docs", region: "us-east-1"},
			key:   "user/doc.html",
			want:  "https://kb-docs.s3.us-east-1.amazonaws.com/user/doc.html",
		},
		{
			name:  "without region",
			store: Store{bucket: "kb-docs"},
			key:   "user/doc.html",
			want:  "https://kb-docs.s3.amazonaws.com/user/doc.html",
		},
		{
			name:  "prefix and spaces escaped",
			store: Store{bucket: "kb-docs", region: "eu-west-2", prefix: "documents"},
			key:   "user/my doc.html",
			want:  "https://kb-docs.s3.eu-west-2.amazonaws.com/documents/user/my%20doc.html",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.store.PublicURL(tt.key); got != tt.want {
				t.Fatalf("PublicURL(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

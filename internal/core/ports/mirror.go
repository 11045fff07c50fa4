package ports

// MirrorProvider expands a logical URL into the concrete candidates to try, in order.
//
//go:generate go run go.uber.org/mock/mockgen -source=mirror.go -destination=mocks/mock_mirror.go -package=mocks
type MirrorProvider interface {
	Candidates(url string) []string
}

package adapter

import "context"

// Provider role vocabulary. Stored assistant turns are presented to the
// provider as "model"; adapters translate further if their SDK differs.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// Turn is one entry of provider-facing conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FragmentFunc receives each incremental piece of assistant text as it
// arrives. Returning an error stops the stream.
type FragmentFunc func(fragment string) error

// AIProvider is the port for the generative completion service.
type AIProvider interface {
	ListModels(ctx context.Context) ([]string, error)

	// CountTokens returns the exact token count for text under the given
	// model, using the provider's counting capability. Implementations
	// return an error when exact counting is unavailable; callers fall
	// back to a heuristic.
	CountTokens(ctx context.Context, model, text string) (int, error)

	// StreamChat opens a streaming completion over the assembled turns and
	// invokes onFragment for every piece of text. It returns the number of
	// fragments delivered. A failure to open or read the stream is returned
	// as an error; individual malformed fragments are skipped.
	StreamChat(ctx context.Context, model string, turns []Turn, onFragment FragmentFunc) (int, error)
}

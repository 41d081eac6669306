package anthropic

// BuildCachedSystemBlocks returns a single system block with an ephemeral
// cache breakpoint. The résumé-parsing instructions are identical for every
// candidate, so later calls in a batch read them from the prompt cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "5m"},
		},
	}
}

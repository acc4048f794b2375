package observability

/*
RemoteObservability is used to get feedback on long-running GitHub loading
operations (cache warmup, query cache refresh).
It is mostly used for UX purposes (progress bar on the CLI)
*/
type RemoteObservability interface {
	Init(nbTotalAssets int)
	LoadingAsset(entity string, nb int)
}

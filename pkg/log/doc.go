/*
Package log provides structured logging for the launcher using zerolog.

A single global Logger is configured once at startup with Init and then
specialised per component:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})

	logger := log.WithComponent("orchestrator")
	logger.Info().Str("cluster_id", id).Msg("Fetching deployment status")

	clusterLog := log.WithClusterID(id)
	clusterLog.Error().Err(err).Msg("Configure failed")

Console output is used for the interactive CLI; JSON output suits `launcher
serve` when logs are shipped elsewhere. Command output from configure scripts
is streamed line by line at debug level with the cluster id attached.

Never log the sudo password or anything derived from it.
*/
package log

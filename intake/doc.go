// Package intake serves the executor's REST surface with gin.
//
//	POST /execute   queue a JSON submission: 202, 400 on a malformed body,
//	                501 when no executor handles its language
//	GET  /status    name, languages, problems and queued submission IDs
//	GET  /health    liveness
//	GET  /metrics   prometheus exposition, when enabled
package intake

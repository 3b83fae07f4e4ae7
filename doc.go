/*
Package slb implements a streaming, shard-by-key load balancer for
line-oriented text pipelines: it chunks input files on newline
boundaries, feeds each chunk through a mapper child process, hashes the
first whitespace-delimited field of every output line to one of N
partitions, and streams each partition into its own folder child
process.

See slb/cmd/slb for the command-line front end.
*/
package slb

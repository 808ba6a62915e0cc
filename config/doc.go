/*
Package config holds the sylpheed configuration file definitions.

The configuration lives in a single file, sylpheed.conf, in "sconf" format:
indentation with tabs only, "#" as first non-whitespace character makes the
line a comment, values are not quoted or escaped and never span multiple
lines, optional fields can be left out completely. An annotated empty config
can be printed with "sylpheed describeconf".

The file holds the composing preferences (outgoing charset, transfer
encoding policy, attachment filename encoding) and the accounts messages are
composed and queued for.
*/
package config

// NOTE: do not rename struct fields, the config file format follows them.

// Package srt receives MPEG-TS over SRT (Secure Reliable Transport),
// either as a listener accepting a publisher (Server) or by dialing a
// remote listener (Pull), and hands the bytes to ingest sessions.
package srt

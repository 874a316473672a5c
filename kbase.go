// Package kbase provides the knowledge-ingestion and retrieval-cache core of
// a conversational tourism assistant. It crawls a registry of web sources,
// extracts and chunks their text into a document store, and answers
// questions from a multi-tier in-process cache backed by a text generator.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, goquery/).
package kbase

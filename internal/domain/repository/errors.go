package repository

import "errors"

var (
	ErrAssetNotFound     = errors.New("asset not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrNoNarratives      = errors.New("no metric narratives generated")
)

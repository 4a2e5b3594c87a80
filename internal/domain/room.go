// Package domain contains entities without logic, just meta-data
package domain

type RoomID string

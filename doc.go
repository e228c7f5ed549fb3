// Package central manages a BLE central that keeps concurrent links to a
// bounded number of peripherals for the duration of a session, identifies
// each peripheral by the first message it sends and relays application
// messages over a read/write characteristic pair.
//
// This package holds the shared vocabulary: addresses, UUIDs,
// advertisements, GATT profile types and the interfaces of the radio
// collaborators. The session manager lives in package manager.
package central

// Package domain resolves free-text Russian addresses from incident journals
// to coordinates inside the Moscow region, and models the incident records
// that carry them.
//
// # Address Conventions
//
// Journal addresses are typed by hand and follow no single format:
//
//	"мск, ул. Тверская, дом 7"      city abbreviated, long house marker
//	"Балашиха, пр-кт Ленина 32"     oblast town without the region name
//	"ул. Соломатина д. 5, к. 2"     short name of a street named after a person
//	"Арбат 10"                      neither city nor street type
//
// House tokens are written as digits with an optional letter, an optional
// "/fraction" and optional block ("к", "корп.") and building ("стр.") parts.
// [ExtractHouseNumber] reduces them all to one canonical form, for example
// "д. 10А, корп. 2" and "10а к2" both become "10ак2".
//
// Ordinal street prefixes such as "2-я Звенигородская" and numbers that open
// a street name such as "ул. 1905 года" are part of the street, not a house
// number. A number after "д." or "вл." wins over any other.
//
// # Resolution
//
// A [Resolver] normalizes the text ([Normalizer]), asks a [Provider] for
// candidates (retrying with the raw text when the normalized query finds
// nothing), keeps the best candidate inside [MoscowRegion] ([Selector]) and,
// in the strict variant, checks that the provider's address names the same
// street and house as the input ([MatchValidator]). Every failure is a
// sentinel error that [Outcome] turns into a stable label.
//
// # Coordinates
//
// Coordinates are rendered with six decimals and a "." separator regardless
// of locale, see [FormatCoord]. The region is a rectangle, inclusive on every
// edge:
//
//	lat 54.0 .. 57.5, lon 35.0 .. 40.0, centre 55.7558, 37.6176
//
// # ID Generation
//
// Incidents without an upstream id get a deterministic SHA-256 id over
// kind|address|occurred_at|row, so replaying a topic produces the same ids.
// See [generateID].
package domain

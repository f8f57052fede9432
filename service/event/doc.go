// Package event implements named peripheral event loops. Producers post
// events identified by a family and an integer kind into a bounded queue; a
// dedicated dispatch goroutine per loop delivers them in order to handlers
// subscribed to that family, either for one kind or for AnyKind.
package event

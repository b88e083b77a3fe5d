// Package order contains the shipment-order model of the pipeline.
//
// Key concepts:
//   - RawOrder: the verbatim detail document fetched from the portal, keyed by order id
//   - TransformedOrder: the flat, fixed-column projection of a RawOrder
//   - FieldRule: an ordered list of extraction strategies for one column
//   - Flattener: a pure mapping from raw documents to transformed orders
//
// Design Pattern: Ports & Adapters
//   - Source, Session and the repositories are ports defined here
//   - The portal client and the gorm repositories live in the infrastructure layer
package order

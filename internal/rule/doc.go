// Package rule holds the automation domain: trigger and action variants,
// their config schemas, the compatibility matrix and the Rule type.
//
// Variants are closed. Each one is a typed config struct plus a static spec
// in the Registry returned by Default. Values enter as string maps and are
// decoded once at the boundary; everything past that works on typed configs.
package rule

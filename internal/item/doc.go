// Package item stores the resources users create through the API.
//
// Every operation takes the caller's owner id and filters on it jointly
// with the item id. There is no way to address an item without its owner,
// so one user's items are indistinguishable from missing ones to everybody
// else.
package item

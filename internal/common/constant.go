// Package common contains shared constants and sentinel errors used across
// driftsync components.
package common

// AgentParamName is the query parameter used to carry the session token on
// requests to the home node.
const AgentParamName = "agent"

// ContactParamName is the query parameter used to carry the contact token
// (guid.token) on requests to a peer node.
const ContactParamName = "contact"

// Package plot knows the plot file naming convention: which staging entries
// are finished plots, which category (k-value) they belong to, and how much
// destination space one plot of a category needs.
package plot

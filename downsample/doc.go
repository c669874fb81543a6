/*Package downsample degrades 23andme-style raw genotype
exports to simulate low-quality input.

A raw export is read fully into memory, a random subset of
loci is set to the `--` no-call marker, and optionally the
surviving diploid calls are collapsed to pseudo-haploid
calls by picking one of the two alleles at random. The
result is written back out in the same tab-separated layout,
header comments included, so the degraded file remains a
valid upload for downstream matching services.
*/
package downsample

/*
 * doc.go, part of gocte.
 * 
 * Copyright 2025 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 * 
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as 
 * published by the Free Software Foundation; either version 2.1 of the 
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General 
 * Public License along with this program.  If not, see 
 * <http://www.gnu.org/licenses/>.
 * 
 * Gocte is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.  
 * 
 */

/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*
Package cte is the main package of the goCTE library. It provides the crystal structure
and metadata types used by the rest of the packages, and facilities for reading and
writing the structure files used in the thermal-expansion benchmarks.

	**goCTE Capabilities**

	Reads/writes extended XYZ files (several frames, lattice, forces and metadata).

	Reads/writes VASP 5 POSCAR/CONTCAR files, and rescales them by changing the scale line.

	Typed, append-only metadata (Info) that follows a structure through the
	relaxation, strain, force-constant, harmonic and quasi-harmonic stages.

	Cell utilities: volume, lengths and angles, fractional coordinates, isotropic
	and c-axis strain.

The calculations are done by the sub-packages: calc (interatomic potentials),
relax (geometry/cell optimization), symmetry, phonon (force constants and harmonic
properties), qha (quasi-harmonic approximation) and pipeline, which ties them together.
The cte2bench command runs the whole thing.
*/
package cte
